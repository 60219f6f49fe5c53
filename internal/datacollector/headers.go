package datacollector

import "net/http"

// Headers is the complete set of request headers sent to the Data Collector API.
type Headers struct {
	ContentType   string
	Authorization string
	LogType       string
	MsDate        string
}

func BuildHeaders(workspaceID string, key []byte, logType string, contentLength int, date string) Headers {
	return Headers{
		ContentType:   ContentType,
		Authorization: Authorization(workspaceID, Sign(key, contentLength, date)),
		LogType:       logType,
		MsDate:        date,
	}
}

// Apply writes the headers onto req. x-ms-date is stored under its literal
// lower-case name so it goes on the wire exactly as documented.
func (h Headers) Apply(req *http.Request) {
	req.Header.Set(HeaderContentType, h.ContentType)
	req.Header.Set(HeaderAuthorization, h.Authorization)
	req.Header.Set(HeaderLogType, h.LogType)
	req.Header[HeaderMsDate] = []string{h.MsDate}
}
