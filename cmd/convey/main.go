package main

import (
	"github.com/joho/godotenv"

	conveycmd "github.com/initializ/convey/cmd"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	_ = godotenv.Load()
	conveycmd.SetVersionInfo(version, commit)
	conveycmd.Execute()
}
