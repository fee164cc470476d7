// Command hyperpixel-init muxes the display GPIO pins to ALT2 and exits.
package main

import (
	"os"

	"github.com/hjkoskel/hyperpixelinit"
)

func main() {
	os.Exit(hyperpixelinit.NewDriver().Run())
}
