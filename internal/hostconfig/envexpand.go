package hostconfig

import "os"

// ExpandEnv expands $VAR / ${VAR} references in raw YAML bytes before
// parsing, exactly as pkg/config/envexpand.go does for the teacher's own
// tarsy.yaml. Missing variables expand to empty string; Validate is
// expected to catch any field left empty as a result.
func ExpandEnv(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}
