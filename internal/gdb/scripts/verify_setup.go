package scripts

import (
	_ "embed"
	"regexp"
	"strings"
)

//go:embed templates/verify_setup.gdb.tmpl
var verifySetupTemplate string

// "    TargetName         Type       Endian TapName            State"
// " 0* stm32f4x.cpu       hla_target little stm32f4x.cpu       halted"
var targetLinePattern = regexp.MustCompile(`^\s*\d+\*?\s+(\S+)\s+(\S+)\s+\S+\s+\S+\s+(\S+)\s*$`)

// VerifySetupScript checks that GDB can reach OpenOCD and that OpenOCD has a
// target it can halt.
type VerifySetupScript struct {
	target Target
}

// NewVerifySetupScript creates a new setup check script.
func NewVerifySetupScript(target Target) *VerifySetupScript {
	return &VerifySetupScript{target: target}
}

// Name implements Script.Name
func (s *VerifySetupScript) Name() string {
	return "verify_setup"
}

// Template implements Script.Template
func (s *VerifySetupScript) Template() string {
	return connectTemplate + verifySetupTemplate
}

// Params implements Script.Params
func (s *VerifySetupScript) Params() map[string]interface{} {
	return s.target.params()
}

// Parse implements Script.Parse
// On success Data["targets"] holds the OpenOCD target names, and
// Data["state"] the state of the first one.
func (s *VerifySetupScript) Parse(output string) (*Result, error) {
	result := markerResult(output, "setup check")
	if !result.Success {
		return result, nil
	}

	var names []string
	for _, line := range strings.Split(output, "\n") {
		m := targetLinePattern.FindStringSubmatch(line)
		if m == nil || m[1] == "TargetName" {
			continue
		}
		if len(names) == 0 {
			result.SetData("state", m[3])
		}
		names = append(names, m[1])
	}
	result.SetData("targets", names)

	return result, nil
}

// Streaming implements Script.Streaming
func (s *VerifySetupScript) Streaming() bool {
	return false
}
