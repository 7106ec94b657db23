package templates

import (
	"fmt"
	"html"
)

// renderLayout wraps already escaped inner HTML in the ResolveIt frame
func renderLayout(subject, innerHTML string) string {
	safeSubject := html.EscapeString(subject)

	return fmt.Sprintf(`<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Strict//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-strict.dtd">
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
  <meta http-equiv="Content-Type" content="text/html; charset=utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1, minimum-scale=1, maximum-scale=1">
  <title>%s</title>
  <style type="text/css">
    body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 0; padding: 0; background-color: #f4f6f8; }
    .container { max-width: 600px; margin: 0 auto; background-color: #ffffff; }
    .header { background: linear-gradient(135deg, #0f766e 0%%, #115e59 100%%); padding: 36px 30px; text-align: center; }
    .header h1 { color: #fff; margin: 0; font-size: 22px; font-weight: 700; }
    .content { padding: 36px 30px; color: #1f2937; line-height: 1.6; font-size: 15px; }
    .button { display: inline-block; padding: 12px 28px; background-color: #0f766e; color: #fff; text-decoration: none; border-radius: 6px; font-weight: 600; }
    table.digest { width: 100%%; border-collapse: collapse; font-size: 13px; }
    table.digest td, table.digest th { border-bottom: 1px solid #e5e7eb; padding: 6px 4px; text-align: left; }
    .footer { padding: 24px 30px; text-align: center; color: #6b7280; font-size: 12px; border-top: 1px solid #e5e7eb; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1>%s</h1>
    </div>
    <div class="content">
      %s
    </div>
    <div class="footer">
      <p>ResolveIt community mediation. You received this because a dispute names you as a party.</p>
    </div>
  </div>
</body>
</html>`, safeSubject, safeSubject, innerHTML)
}
