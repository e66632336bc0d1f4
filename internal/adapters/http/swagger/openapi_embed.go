package swagger

import _ "embed"

// The spec ships inside the binary so /openapi.yaml needs no disk access.
//
//go:embed openapi.yaml
var specYAML []byte
