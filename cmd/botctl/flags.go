package main

// GlobalFlags holds persistent flags shared by every action.
type GlobalFlags struct {
	ConfigPath string
}

type LogsFlags struct {
	Lines  int // 0 uses tail_lines from config
	Follow bool
}

type HistoryFlags struct {
	Limit int
}

type InstallServiceFlags struct {
	Output   string // unit file path; empty uses unit.output
	Template string // custom template; empty uses unit.template or the embedded one
	WorkDir  string // installation directory substituted for the placeholder
}
