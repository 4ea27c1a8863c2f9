package rtsp

import (
	"crypto/md5"
	"encoding/base64"
	"fmt"
	"strings"
)

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return fmt.Sprintf("%x", sum)
}

// authChallenge holds the parsed WWW-Authenticate header from a 401
// response.
type authChallenge struct {
	digest bool
	realm  string
	nonce  string
}

// parseAuthChallenge parses a WWW-Authenticate header value, recognizing
// "Basic" and "Digest realm=\"...\", nonce=\"...\"" forms.
func parseAuthChallenge(header string) authChallenge {
	if strings.HasPrefix(header, "Digest") {
		return authChallenge{
			digest: true,
			realm:  quotedParam(header, "realm"),
			nonce:  quotedParam(header, "nonce"),
		}
	}
	return authChallenge{digest: false}
}

func quotedParam(header, name string) string {
	idx := strings.Index(header, name+"=\"")
	if idx < 0 {
		return ""
	}
	start := idx + len(name) + 2
	end := strings.IndexByte(header[start:], '"')
	if end < 0 {
		return ""
	}
	return header[start : start+end]
}

// authorization builds the value of an Authorization header for the given
// method/url, per spec §4.G. Digest response is
// md5(HA1 : nonce : md5(method:url)) with HA1 = md5(user:realm:pass).
func (c authChallenge) authorization(method, requestURL, username, password string) string {
	if !c.digest {
		auth := username + ":" + password
		return "Basic " + base64.StdEncoding.EncodeToString([]byte(auth))
	}

	ha1 := md5Hex(username + ":" + c.realm + ":" + password)
	ha2 := md5Hex(method + ":" + requestURL)
	response := md5Hex(ha1 + ":" + c.nonce + ":" + ha2)

	return fmt.Sprintf(
		`Digest username="%s", realm="%s", nonce="%s", uri="%s", algorithm="MD5", response="%s"`,
		username, c.realm, c.nonce, requestURL, response)
}
