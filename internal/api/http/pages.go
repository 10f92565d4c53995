package http

import (
	gohtml "html"

	"fmt"
)

// errorPage renders a human-readable HTML error for the raw-HTML endpoint,
// which cannot answer in JSON.
func errorPage(err error) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Optimization failed</title>
</head>
<body style="font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,sans-serif;margin:48px auto;max-width:600px;color:#111;">
<h1 style="font-size:1.4em;">Optimization failed</h1>
<p>%s</p>
<p style="color:#666;">Check the URL and try again.</p>
</body>
</html>`, gohtml.EscapeString(userMessage(err)))
}
