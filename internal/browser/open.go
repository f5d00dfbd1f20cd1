package browser

import (
	"fmt"
	"os/exec"
	"runtime"
)

// starter launches a command without waiting for it.
var starter = func(name string, args ...string) error {
	return exec.Command(name, args...).Start()
}

// Open opens url in the user's default browser.
func Open(url string) error {
	name, args, err := command(runtime.GOOS, url)
	if err != nil {
		return err
	}
	return starter(name, args...)
}

func command(goos, url string) (string, []string, error) {
	switch goos {
	case "darwin":
		return "open", []string{url}, nil
	case "linux", "freebsd", "openbsd":
		return "xdg-open", []string{url}, nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}, nil
	default:
		return "", nil, fmt.Errorf("browser: unsupported OS %s", goos)
	}
}
