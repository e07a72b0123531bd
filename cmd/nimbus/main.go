package main

import (
	"os"

	"github.com/alecthomas/kong"

	"github.com/nimbusproxy/nimbus/internal/ipc"
	"github.com/nimbusproxy/nimbus/internal/protocol"
)

// CLI is the top-level Kong struct.
type CLI struct {
	Verbose bool   `short:"v" help:"Verbose output."`
	Socket  string `help:"Helper daemon socket path." default:"${socket_path}"`

	Connect    ConnectCmd    `cmd:"" help:"Start the proxy engine."`
	Disconnect DisconnectCmd `cmd:"" help:"Stop the proxy engine."`
	Status     StatusCmd     `cmd:"" help:"Show engine and helper service status."`
	Logs       LogsCmd       `cmd:"" help:"Print recent engine output captured by the helper."`
	Service    ServiceCmd    `cmd:"" help:"Manage the privileged helper service."`
	Version    VersionCmd    `cmd:"" help:"Print version."`
}

func main() {
	var cli CLI
	k, err := kong.New(&cli,
		kong.Name("nimbus"),
		kong.Description("Nimbus — proxy engine supervisor"),
		kong.UsageOnError(),
		kong.Vars{"socket_path": protocol.SocketPath},
		kong.ConfigureHelp(kong.HelpOptions{
			NoExpandSubcommands: true,
			Compact:             true,
		}),
	)
	if err != nil {
		panic(err)
	}

	args := os.Args[1:]
	// No args or bare "help" → print usage and exit 0 (not an error).
	if len(args) == 0 || (len(args) == 1 && args[0] == "help") {
		_, _ = k.Parse([]string{"--help"})
		os.Exit(0) // unreachable
	}

	ctx, err := k.Parse(args)
	k.FatalIfErrorf(err)
	k.FatalIfErrorf(ctx.Run(&cli))
}

// helperClient builds the IPC client for the selected socket.
func helperClient(globals *CLI) *ipc.Client {
	return &ipc.Client{SocketPath: globals.Socket, Timeout: ipc.DefaultTimeout}
}
