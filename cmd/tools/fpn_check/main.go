package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/noah-isme/peanuts-pos/internal/fpn"
)

// fpn_check walks a directory and decodes every .fpn save file it finds.
// Exit code 0 = ok, 1 = at least one file is malformed, 2 = other error.
func main() {
	bad, err := scan(rootDir(os.Args[1:]))
	if err != nil {
		fmt.Fprintf(os.Stderr, "fpn_check error: %v\n", err)
		os.Exit(2)
	}
	if len(bad) > 0 {
		for _, v := range bad {
			fmt.Fprintf(os.Stderr, "MALFORMED: %s\n", v)
		}
		os.Exit(1)
	}
	fmt.Println("fpn_check: OK")
}

// rootDir picks the directory to check; it defaults to the server's POS_SAVE_DIR default.
func rootDir(args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	return "./saves"
}

func scan(dir string) ([]string, error) {
	var malformed []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != fpn.Extension {
			return nil
		}
		ok, reason, err := checkFile(path)
		if err != nil {
			return err
		}
		if !ok {
			malformed = append(malformed, fmt.Sprintf("%s: %s", path, reason))
		}
		return nil
	})
	return malformed, err
}

// checkFile separates files that fail to decode from files that cannot be read.
func checkFile(path string) (bool, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, "", err
	}
	defer func() {
		_ = f.Close()
	}()
	if _, err := fpn.Decode(f); err != nil {
		var fe *fpn.FormatError
		if errors.As(err, &fe) {
			return false, fe.Error(), nil
		}
		return false, "", err
	}
	return true, "", nil
}
