package persistentworker

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// PersistentWorkerFlag is appended by Bazel to the startup arguments of a worker process.
const PersistentWorkerFlag = "--persistent_worker"

// maxArgfileLine bounds a single line of an argfile. Compiler flags such as
// --cfg or -L lists can be far longer than bufio's default token size.
const maxArgfileLine = 16 * 1024 * 1024

// ParseArgs removes the persistent_worker flag from the launcher arguments.
// It returns the remaining arguments and whether the flag was set.
// Argfiles are left in place; in one-shot mode they belong to the compiler
// command line and are expanded by ExpandArgfile.
func ParseArgs(args []string) ([]string, bool) {
	isPersistentWorker := false
	result := make([]string, 0, len(args))

	for _, arg := range args {
		if arg == PersistentWorkerFlag {
			isPersistentWorker = true
			// Skip this arg - don't add it to result
		} else {
			result = append(result, arg)
		}
	}

	return result, isPersistentWorker
}

// ExpandArgfile expands a single optional argfile argument (@path/to/file) in place.
// Only one argfile is supported.
func ExpandArgfile(args []string) ([]string, error) {
	argfileIndex := -1
	for i, arg := range args {
		if strings.HasPrefix(arg, "@") {
			if argfileIndex != -1 {
				return nil, fmt.Errorf("multiple argfiles not supported")
			}
			argfileIndex = i
		}
	}

	// No argfile found
	if argfileIndex == -1 {
		return args, nil
	}

	argfilePath := args[argfileIndex][1:] // Remove @ prefix
	fileArgs, err := ReadArgfile(argfilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read argfile %s: %w", argfilePath, err)
	}

	// Build new args slice: args before argfile + fileArgs + args after argfile
	result := make([]string, 0, len(args)-1+len(fileArgs))
	result = append(result, args[:argfileIndex]...)
	result = append(result, fileArgs...)
	result = append(result, args[argfileIndex+1:]...)

	return result, nil
}

// ReadArgfile reads arguments from a file, one per line.
// Lines are taken verbatim: an empty line is an empty argument.
func ReadArgfile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	args := []string{}
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxArgfileLine)
	for scanner.Scan() {
		args = append(args, scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return args, nil
}
