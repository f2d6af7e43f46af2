// Package schemas embeds the JSON schemas shipped with convey.
package schemas

import _ "embed"

// PipelineV1Schema is the JSON schema for version "1" pipeline definitions.
//
//go:embed pipeline_v1.json
var PipelineV1Schema []byte
