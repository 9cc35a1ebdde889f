package codegen

import "errors"

// ErrTemplateNotFound indicates a template name with no embedded or
// override file.
var ErrTemplateNotFound = errors.New("template not found")
