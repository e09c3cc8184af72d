package config

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	cueyaml "cuelang.org/go/encoding/yaml"
)

//go:embed schema.cue
var schemaSource []byte

// Error is a configuration error. Schema violations carry the position of
// the offending field in the config file; coded rule violations carry
// only the code and message.
type Error struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: [%s] %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Configuration error codes (C001-C103).
const (
	ErrRead   = "C001" // file read or path resolution failure
	ErrParse  = "C002" // YAML decode failure
	ErrSchema = "C003" // schema violation

	ErrDuplicateName     = "C101" // duplicate policy name
	ErrDuplicatePriority = "C102" // two policies share a priority
	ErrEmptyField        = "C103" // required field empty
)

// validateSchema checks the raw config bytes against the embedded CUE
// schema. The YAML is lifted into CUE, unified with the closed #Config
// definition, and validated; unknown fields and type mismatches surface
// as positioned errors.
func validateSchema(filename string, data []byte) error {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return &Error{Code: ErrSchema, Message: fmt.Sprintf("compile schema: %v", err)}
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))
	if err := def.Err(); err != nil {
		return &Error{Code: ErrSchema, Message: fmt.Sprintf("schema has no #Config: %v", err)}
	}

	file, err := cueyaml.Extract(filename, data)
	if err != nil {
		return positionedError(ErrParse, err)
	}
	val := ctx.BuildFile(file)
	if err := val.Err(); err != nil {
		return positionedError(ErrParse, err)
	}

	if err := def.Unify(val).Validate(cue.Concrete(true)); err != nil {
		return positionedError(ErrSchema, err)
	}
	return nil
}

// positionedError extracts the first position a CUE error carries.
func positionedError(code string, err error) *Error {
	errs := cueerrors.Errors(err)
	if len(errs) > 0 {
		first := errs[0]
		if positions := cueerrors.Positions(first); len(positions) > 0 {
			return &Error{Code: code, Message: first.Error(), Pos: positions[0]}
		}
		return &Error{Code: code, Message: first.Error()}
	}
	return &Error{Code: code, Message: err.Error()}
}
