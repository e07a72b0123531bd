package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/nimbusproxy/nimbus/internal/helperd"
	"github.com/nimbusproxy/nimbus/internal/protocol"
	"github.com/nimbusproxy/nimbus/internal/version"
)

func main() {
	log.SetPrefix("nimbus-helper: ")
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	socketPath := flag.String("socket", protocol.SocketPath, "Unix socket path")
	settingsPath := flag.String("settings", helperd.DefaultSettingsPath, "settings file path")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("nimbus-helper %s (commit %s, built %s)\n",
			version.Version, version.Commit, version.Date)
		return
	}

	if os.Geteuid() != 0 {
		log.Fatal("must run as root; install via 'nimbus service install'")
	}

	log.Printf("nimbus-helper %s starting", version.Version)

	err := helperd.Run(helperd.Config{
		SocketPath:   *socketPath,
		SettingsPath: *settingsPath,
		Version: helperd.VersionInfo{
			Version: version.Version,
			Commit:  version.Commit,
			BuiltAt: version.Date,
		},
	})
	if err != nil {
		log.Fatal(err)
	}
}
