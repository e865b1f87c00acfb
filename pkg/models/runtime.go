package models

// RuntimeInfo tells UI clients which base URLs the service answers on.
type RuntimeInfo struct {
	HTTPBaseURL string `json:"httpBaseUrl"`
	WSBaseURL   string `json:"wsBaseUrl"`
	Port        int    `json:"port"`
}
