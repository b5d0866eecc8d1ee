package notify

import (
	"fmt"
	"runtime"

	"github.com/agentcore/orchestrator/internal/governance"
	"github.com/go-toast/toast"
)

// DesktopNotifier raises an OS toast for Cli/Desktop-routed approvals,
// adapted from the teacher's ToastNotifier (toast.go): same go-toast
// usage and Windows-only support check, generalized from a fixed
// "Supervisor Needs Input" title to an arbitrary approval summary.
type DesktopNotifier struct {
	appID        string
	dashboardURL string
}

// NewDesktopNotifier creates a desktop notifier posting toasts under
// appID, with actions linking back to dashboardURL.
func NewDesktopNotifier(appID, dashboardURL string) *DesktopNotifier {
	if appID == "" {
		appID = "agentcore-orchestrator"
	}
	if dashboardURL == "" {
		dashboardURL = "http://localhost:8080"
	}
	return &DesktopNotifier{appID: appID, dashboardURL: dashboardURL}
}

func (d *DesktopNotifier) Channel() governance.ApprovalChannel { return governance.ChannelDesktop }

// Notify raises a toast notification. It only works on Windows,
// matching the teacher's ToastNotifier; other platforms get an error
// the caller can choose to ignore.
func (d *DesktopNotifier) Notify(event Event) error {
	if runtime.GOOS != "windows" {
		return fmt.Errorf("desktop toast notifications only supported on Windows")
	}

	notification := toast.Notification{
		AppID:   d.appID,
		Title:   "Approval needed",
		Message: event.Summary,
		Audio:   toast.IM,
		Actions: []toast.Action{
			{Type: "protocol", Label: "Open Dashboard", Arguments: d.dashboardURL},
		},
	}
	return notification.Push()
}

// IsSupported reports whether this platform can raise desktop toasts.
func (d *DesktopNotifier) IsSupported() bool { return runtime.GOOS == "windows" }
