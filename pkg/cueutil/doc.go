// SPDX-License-Identifier: MPL-2.0

// Package cueutil validates and decodes CUE input against an embedded
// schema. It exists so the config package does not repeat the
// compile/unify/validate dance or reinvent readable CUE error messages.
//
// # Usage
//
//	//go:embed config_schema.cue
//	var configSchema string
//
//	cfg, err := cueutil.ParseAndDecodeString[map[string]any](
//	    configSchema,
//	    data,
//	    "#Config",
//	    cueutil.WithConcrete(false),
//	    cueutil.WithFilename(path),
//	)
//	if err != nil {
//	    return err // message carries the file and CUE path
//	}
package cueutil
