package dto

type SessionResponse struct {
	ID            string            `json:"id"`
	Route         *RouteResponse    `json:"route,omitempty"`
	Navigating    bool              `json:"navigating"`
	Following     bool              `json:"following"`
	Generation    uint64            `json:"generation"`
	PositionError string            `json:"position_error,omitempty"`
	RerouteError  string            `json:"reroute_error,omitempty"`
	Progress      *ProgressResponse `json:"progress,omitempty"`
}

type StartNavigationRequest struct {
	Source   string `json:"source"`
	DeviceID string `json:"device_id"`
}
