package provider

var (
	_ Provider = (*RemoteProvider)(nil)
	_ Provider = (*LocalDaemonProvider)(nil)
	_ Provider = (*SubprocessProvider)(nil)
	_ Provider = (*FileMediatedProvider)(nil)
	_ Provider = (*MockProvider)(nil)
)
