package main

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	SetVersionInfo(version, commit, date)
	Execute()
}
