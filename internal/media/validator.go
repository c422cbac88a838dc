package media

import (
	"os"
)

// ValidationResult reports whether a file on disk can be read
type ValidationResult struct {
	Readable bool     // File exists and is accessible
	Reasons  []string // Human-readable reasons it is not
}

// ValidateFile checks if a file exists and is readable
// Returns ValidationResult with Readable field set appropriately
func ValidateFile(filePath string) ValidationResult {
	result := ValidationResult{
		Reasons: []string{},
	}

	// Check if file exists and get info
	info, err := os.Stat(filePath)
	if err != nil {
		switch {
		case os.IsNotExist(err):
			result.Reasons = append(result.Reasons, "file does not exist")
		case os.IsPermission(err):
			result.Reasons = append(result.Reasons, "file is not readable (permission denied)")
		default:
			result.Reasons = append(result.Reasons, "file access error: "+err.Error())
		}
		return result
	}

	// Check if it's a regular file (not a directory)
	if info.IsDir() {
		result.Reasons = append(result.Reasons, "path is a directory, not a file")
		return result
	}

	// Actually try to open the file to verify read permissions
	file, err := os.Open(filePath)
	if err != nil {
		if os.IsPermission(err) {
			result.Reasons = append(result.Reasons, "file is not readable (permission denied)")
		} else {
			result.Reasons = append(result.Reasons, "cannot open file: "+err.Error())
		}
		return result
	}
	_ = file.Close()

	result.Readable = true
	return result
}
