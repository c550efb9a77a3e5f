package env

import (
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

// LoadDotEnv reads the given dotenv files (".env" when none are passed) into the process environment.
// Variables already present in the environment win. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// PrintWithPrefix prints environment variables to the global SugaredLogger. It will only print the environment variables
// with a given prefix set inside the function.
func PrintWithPrefix(printableEnvPrefixes []string) {
	zap.S().Info("Environment variables:")
	envVariables := os.Environ()
	sort.Strings(envVariables)
	for _, e := range envVariables {
		for _, prefix := range printableEnvPrefixes {
			if strings.HasPrefix(e, prefix) {
				zap.S().Infof("%s", e)
			}
		}
	}
}

func ReadOrDefault(key string, dflt string) string {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return dflt
	}
	return value
}

func ReadIntOrDefault(key string, dflt int) int {
	value := ReadOrDefault(key, strconv.Itoa(dflt))
	i, e := cast.ToIntE(value)
	if e != nil {
		return dflt
	}
	return i
}

// ReadDurationOrDefault accepts Go duration strings ("1500ms", "2s") as well as plain integers, which cast
// interprets as nanoseconds. A value that cannot be parsed falls back to dflt.
func ReadDurationOrDefault(key string, dflt time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return dflt
	}
	d, e := cast.ToDurationE(value)
	if e != nil {
		return dflt
	}
	return d
}
