package app

import "os"

// version is overridden at build time with -ldflags "-X".
var version = "dev"

var exitFn = os.Exit
