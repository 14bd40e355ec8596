package soap

import (
	"fmt"
	"strings"
)

const (
	ActionGetVolume = "GetVolume"
	ActionGetMute   = "GetMute"
)

const envelopeTemplate = `<?xml version="1.0" encoding="utf-8"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/" s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">
  <s:Body>
    <u:%[1]s xmlns:u="%[2]s">
      <InstanceID>0</InstanceID>
      <Channel>Master</Channel>
    </u:%[1]s>
  </s:Body>
</s:Envelope>`

// Envelope is the request body for a RenderingControl action.
func Envelope(serviceType, action string) string {
	return fmt.Sprintf(envelopeTemplate, action, serviceType)
}

// BuildRequest renders a complete HTTP/1.1 POST for action. The connection is
// closed by the speaker after the response, which is what the transport reads
// until.
func BuildRequest(host string, port int, path, serviceType, action string) []byte {
	body := Envelope(serviceType, action)
	var b strings.Builder
	fmt.Fprintf(&b, "POST %s HTTP/1.1\r\n", path)
	fmt.Fprintf(&b, "Host: %s:%d\r\n", host, port)
	b.WriteString("Content-Type: text/xml; charset=\"utf-8\"\r\n")
	fmt.Fprintf(&b, "SOAPACTION: \"%s#%s\"\r\n", serviceType, action)
	fmt.Fprintf(&b, "Content-Length: %d\r\n", len(body))
	b.WriteString("Connection: close\r\n\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
