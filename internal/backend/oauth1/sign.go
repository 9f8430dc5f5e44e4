package oauth1

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Firma HMAC-SHA1 según RFC 5849 §3.4. Sólo lo que la danza de tres pasos
// necesita; no hay soporte RSA ni PLAINTEXT.

// percentEncode aplica el encoding estricto de RFC 3986 §2.1.
func percentEncode(s string) string {
	e := url.QueryEscape(s)
	e = strings.ReplaceAll(e, "+", "%20")
	e = strings.ReplaceAll(e, "*", "%2A")
	e = strings.ReplaceAll(e, "%7E", "~")
	return e
}

// baseString construye el signature base string: método, URL base y
// parámetros ordenados, unidos por '&'.
func baseString(method, rawURL string, params url.Values) string {
	pairs := make([]string, 0, len(params))
	for k, vs := range params {
		for _, v := range vs {
			pairs = append(pairs, percentEncode(k)+"="+percentEncode(v))
		}
	}
	sort.Strings(pairs)
	return strings.ToUpper(method) + "&" + percentEncode(rawURL) + "&" + percentEncode(strings.Join(pairs, "&"))
}

// sign calcula oauth_signature para los parámetros dados.
func sign(method, rawURL string, params url.Values, consumerSecret, tokenSecret string) string {
	key := percentEncode(consumerSecret) + "&" + percentEncode(tokenSecret)
	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(baseString(method, rawURL, params)))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// oauthParams retorna los parámetros de protocolo base para una request.
func oauthParams(consumerKey string) url.Values {
	v := url.Values{}
	v.Set("oauth_consumer_key", consumerKey)
	v.Set("oauth_nonce", strings.ReplaceAll(uuid.NewString(), "-", ""))
	v.Set("oauth_signature_method", "HMAC-SHA1")
	v.Set("oauth_timestamp", fmt.Sprintf("%d", time.Now().Unix()))
	v.Set("oauth_version", "1.0")
	return v
}
