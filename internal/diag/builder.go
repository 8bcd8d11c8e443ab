package diag

// New builds an unlocated diagnostic.
func New(sev Severity, tool Tool, msg string) Diagnostic {
	return Diagnostic{
		Severity: sev,
		Tool:     tool,
		Message:  msg,
	}
}

// NewInfo builds an Info diagnostic.
func NewInfo(tool Tool, msg string) Diagnostic {
	return New(SevInfo, tool, msg)
}

// NewWarning builds a Warning diagnostic.
func NewWarning(tool Tool, msg string) Diagnostic {
	return New(SevWarning, tool, msg)
}

// NewError builds an unlocated Error diagnostic.
func NewError(tool Tool, msg string) Diagnostic {
	return New(SevError, tool, msg)
}

// NewLocated builds an Error diagnostic anchored at loc.
func NewLocated(tool Tool, msg string, loc Location) Diagnostic {
	d := New(SevError, tool, msg)
	d.Location = &loc
	return d
}
