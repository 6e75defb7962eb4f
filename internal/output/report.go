package output

import (
	"fmt"
	"strings"
)

// reportBundle is what the "all" format writes.
var reportBundle = []string{"console", "csv", "monthly-csv", "valuations-csv"}

// GenerateReport writes the report in the requested format to dir and
// returns the created file names. The "all" format writes one file per
// bundled formatter.
func GenerateReport(r *Report, format, dir string) ([]string, error) {
	if NormalizeFormatName(format) == "all" {
		files := make([]string, 0, len(reportBundle))
		for _, name := range reportBundle {
			f := GetFormatterByName(name)
			file, err := WriteFormatted(f, r, dir, extension(name))
			if err != nil {
				return files, err
			}
			files = append(files, file)
		}
		return files, nil
	}

	f := GetFormatterByName(format)
	if f == nil {
		// enrich error with available formatters and aliases
		return nil, fmt.Errorf("%w: %q. Try one of: %s (aliases: %s)", ErrUnsupportedFormat, format, strings.Join(AvailableFormatterNames(), ", "), strings.Join(AvailableFormatAliases(), ", "))
	}
	file, err := WriteFormatted(f, r, dir, extension(f.Name()))
	if err != nil {
		return nil, err
	}
	return []string{file}, nil
}
