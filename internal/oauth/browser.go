package oauth

import (
	"os/exec"
	"runtime"
)

// openInBrowser launches the system browser for the given URL. Best
// effort: the flow keeps working when it fails, the operator just has to
// open the printed URL by hand.
func openInBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
