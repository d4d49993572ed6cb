package identity

import (
	"fmt"
	"strings"

	"github.com/driveburn/driveburn/pkg/exechelper"
)

const udevadmCmd = "udevadm"

// udevInfo is the parsed output of "udevadm info --query=all".
type udevInfo struct {
	props    map[string]string
	devLinks []string
}

func queryUdevInfo(exec exechelper.Executor, devPath string) (*udevInfo, error) {
	result := exec.RunCommand(exechelper.ExecParams{
		CmdName: udevadmCmd,
		CmdArgs: []string{"info", "-n", devPath, "--query=all"},
	})
	if result.ExitCode != 0 {
		return nil, fmt.Errorf("udevadm info %s failed: %v", devPath, result.Error)
	}
	return parseUdevInfo(result.OutBuf.String()), nil
}

// parseUdevInfo extracts the E: property lines and the DEVLINKS list.
func parseUdevInfo(out string) *udevInfo {
	info := &udevInfo{props: map[string]string{}}
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		switch line[0] {
		case 'E':
			items := strings.SplitN(strings.Replace(line, "E: ", "", 1), "=", 2)
			if len(items) != 2 {
				continue
			}
			if items[0] == "DEVLINKS" {
				info.devLinks = strings.Fields(items[1])
				continue
			}
			info.props[items[0]] = items[1]
		case 'N':
			info.props["NAME"] = strings.Replace(line, "N: ", "", 1)
		}
	}
	return info
}
