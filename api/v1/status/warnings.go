package status

type Warning string

type Warnings []Warning

const (
	SEP Warning = ";"
)

// AddIfNotExists appends the warning unless an equal one is already present. Existing warnings get separated
// by SEP.
func (m Warnings) AddIfNotExists(warning Warning) Warnings {
	for _, existingWarning := range m {
		if existingWarning == warning || existingWarning == warning+SEP {
			return m
		}
	}

	for i := 0; i < len(m); i++ {
		existingWarning := m[i]
		if existingWarning[len(existingWarning)-1:] != SEP {
			m[i] += SEP
		}
	}

	return append(m, warning)
}

func (m Warnings) Strings() []string {
	out := make([]string, 0, len(m))
	for _, w := range m {
		out = append(out, string(w))
	}
	return out
}
