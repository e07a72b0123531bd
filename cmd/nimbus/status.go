package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nimbusproxy/nimbus/internal/install"
	"github.com/nimbusproxy/nimbus/internal/ui"
)

// StatusCmd shows the helper service and engine status.
type StatusCmd struct{}

func (c *StatusCmd) Run(globals *CLI) error {
	client := helperClient(globals)

	svc := install.Status(client)
	var svcPairs [][2]string
	switch {
	case svc.Running:
		svcPairs = append(svcPairs,
			[2]string{"Service", ui.StateDot("connected") + " running"},
			[2]string{"Version", svc.Version})
	case svc.Broken:
		svcPairs = append(svcPairs,
			[2]string{"Service", ui.StateDot("error") + " installed but not responding"})
	case svc.Installed:
		svcPairs = append(svcPairs, [2]string{"Service", ui.StateDot("disconnected") + " installed"})
	default:
		svcPairs = append(svcPairs,
			[2]string{"Service", ui.StateDot("disconnected") + " not installed"},
			[2]string{"Hint", "nimbus service install"})
	}
	fmt.Println(ui.Section("Helper", ui.KV(svcPairs), ui.MaxWidth))

	if !svc.Running {
		return nil
	}

	st, err := client.Status()
	if err != nil {
		return fmt.Errorf("query engine status: %w", err)
	}

	var engPairs [][2]string
	if st.IsRunning {
		engPairs = append(engPairs,
			[2]string{"Engine", ui.StateDot("connected") + " running"},
			[2]string{"PID", strconv.Itoa(st.PID)},
			[2]string{"Config", st.ConfigPath})
		if st.StartTime != nil {
			engPairs = append(engPairs,
				[2]string{"Uptime", time.Since(*st.StartTime).Round(time.Second).String()})
		}
	} else {
		engPairs = append(engPairs, [2]string{"Engine", ui.StateDot("disconnected") + " stopped"})
		if st.ErrorReason != "" {
			engPairs = append(engPairs, [2]string{"Last error", st.ErrorReason})
		}
		if st.LastExitCode != nil {
			engPairs = append(engPairs, [2]string{"Last exit code", strconv.Itoa(*st.LastExitCode)})
		}
	}
	fmt.Println(ui.Section("Engine", ui.KV(engPairs), ui.MaxWidth))

	if globals.Verbose && st.IsRunning {
		lines, err := client.Logs(10)
		if err == nil && len(lines) > 0 {
			fmt.Println(ui.Section("Recent output", strings.Join(lines, "\n"), ui.MaxWidth))
		}
	}
	return nil
}
