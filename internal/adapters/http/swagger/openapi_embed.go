package swagger

import _ "embed"

// OpenAPI contains the embedded OpenAPI YAML document for both surfaces.
//
//go:embed openapi.yaml
var OpenAPI []byte
