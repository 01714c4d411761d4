package engine

import "github.com/jrmoore/platune/internal/output"

func listOutputDevices() ([]string, error) {
	return output.ListDevices()
}
