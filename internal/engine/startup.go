package engine

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// ReadStartupList reads the module names listed in path, one per line.
// Blank lines and lines starting with '#' are ignored. A missing file is an
// empty list.
func ReadStartupList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "open startup list %s", path)
	}
	defer f.Close()
	names, err := ParseStartupList(f)
	if err != nil {
		return nil, eris.Wrapf(err, "read startup list %s", path)
	}
	return names, nil
}

func ParseStartupList(r io.Reader) ([]string, error) {
	var names []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	return names, sc.Err()
}
