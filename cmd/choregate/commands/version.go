package commands

import (
	"fmt"

	"git.home.luguber.info/inful/choregate/internal/version"
)

// VersionCmd prints build information.
type VersionCmd struct{}

func (v *VersionCmd) Run(g *Global) error {
	_, err := fmt.Fprintln(g.out(), version.String())
	return err
}
