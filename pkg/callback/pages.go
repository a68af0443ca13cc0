package callback

import (
	"fmt"
	"html"
	"net/http"

	"github.com/aidant/authorization-code-pkce/pkg/logger"
	"github.com/aidant/authorization-code-pkce/pkg/oauth"
)

// setSecurityHeaders sets common security headers for all responses.
func setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'unsafe-inline'; script-src 'none'; object-src 'none';")
}

const pageTemplate = `<!DOCTYPE html>
<html>
<head>
    <title>%s</title>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; text-align: center; }
        .container { max-width: 600px; margin: 0 auto; }
        .message { padding: 20px; border-radius: 5px; margin: 20px 0; }
        .success { background-color: #e7f6e7; border: 1px solid #b3e6b3; color: #006600; }
        .error { background-color: #ffe7e7; border: 1px solid #ffb3b3; color: #cc0000; }
        .info { background-color: #e7f3ff; border: 1px solid #b3d9ff; color: #0066cc; }
    </style>
</head>
<body>
    <div class="container">
        <h1>%s</h1>
        <div class="message %s">
            <p>%s</p>
        </div>
    </div>
</body>
</html>`

func writePage(w http.ResponseWriter, title, heading, class, body string) {
	if _, err := fmt.Fprintf(w, pageTemplate, title, heading, class, body); err != nil {
		logger.Warnf("Failed to write HTML content: %v", err)
	}
}

// writeSuccessPage tells the user the flow completed and the window can go.
func writeSuccessPage(w http.ResponseWriter) {
	setSecurityHeaders(w)
	writePage(w, "Authentication Successful", "Authentication Successful!", "success",
		"You have been authenticated. You can now close this window and return to the application.")
}

// writeErrorPage reflects an authorization error response back to the user.
func writeErrorPage(w http.ResponseWriter, response *oauth.AuthorizationResponse) {
	setSecurityHeaders(w)
	w.WriteHeader(http.StatusBadRequest)

	// HTML escape server-supplied values to prevent XSS.
	detail := html.EscapeString(response.Error)
	if response.ErrorDescription != "" {
		detail = fmt.Sprintf("%s: %s", detail, html.EscapeString(response.ErrorDescription))
	}
	writePage(w, "Authentication Failed", "Authentication Failed", "error",
		fmt.Sprintf("The authorization server reported an error.<br>%s", detail))
}

// writePendingPage is shown when the endpoint is visited outside a genuine
// redirect.
func writePendingPage(w http.ResponseWriter) {
	setSecurityHeaders(w)
	writePage(w, "Authentication", "Authentication", "info",
		"The callback server is running. Please complete the authentication flow in your browser.")
}
