// Package sigv4 подписывает HTTP-запросы к AWS по схеме Signature Version 4.
//
// Подпись - чистая функция запроса, ключей и времени: сеть не нужна,
// поэтому пакет проверяется на фиксированных векторах.
package sigv4

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

const (
	Algorithm  = "AWS4-HMAC-SHA256"
	TimeFormat = "20060102T150405Z"
	dateFormat = "20060102"
	terminator = "aws4_request"

	HeaderDate          = "X-Amz-Date"
	HeaderSecurityToken = "X-Amz-Security-Token"
	HeaderContentSHA256 = "X-Amz-Content-Sha256"
	HeaderAuthorization = "Authorization"
)

var (
	ErrMissingCredentials = errors.New("sigv4: missing credentials")
	ErrMissingScope       = errors.New("sigv4: region and service are required")
)

type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// Valid сообщает, хватает ли ключей для подписи.
func (c Credentials) Valid() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// Request - всё, что входит в подпись. Path без экранирования, Query
// в исходном виде. Headers - дополнительные подписываемые заголовки.
type Request struct {
	Method  string
	Host    string
	Path    string
	Query   url.Values
	Headers map[string]string
	Body    []byte

	Region  string
	Service string
	Time    time.Time

	// SignPayloadHeader добавляет x-amz-content-sha256 (нужен S3).
	SignPayloadHeader bool
}

type Signed struct {
	// Headers - заголовки, которые надо выставить запросу, включая Authorization.
	Headers          map[string]string
	SignedHeaders    string
	CanonicalRequest string
	StringToSign     string
	Signature        string
}

// Sign строит каноничный запрос, строку для подписи и заголовок Authorization.
func Sign(req Request, creds Credentials) (Signed, error) {
	if !creds.Valid() {
		return Signed{}, ErrMissingCredentials
	}
	if req.Region == "" || req.Service == "" {
		return Signed{}, ErrMissingScope
	}

	t := req.Time.UTC()
	amzDate := t.Format(TimeFormat)
	date := t.Format(dateFormat)
	payloadHash := HashHex(req.Body)

	headers := make(map[string]string, len(req.Headers)+4)
	for k, v := range req.Headers {
		headers[strings.ToLower(k)] = normalizeValue(v)
	}
	headers["host"] = req.Host
	headers["x-amz-date"] = amzDate
	if req.SignPayloadHeader {
		headers["x-amz-content-sha256"] = payloadHash
	}
	if creds.SessionToken != "" {
		headers["x-amz-security-token"] = creds.SessionToken
	}

	names := make([]string, 0, len(headers))
	for k := range headers {
		names = append(names, k)
	}
	sort.Strings(names)

	var ch strings.Builder
	for _, n := range names {
		ch.WriteString(n)
		ch.WriteByte(':')
		ch.WriteString(headers[n])
		ch.WriteByte('\n')
	}
	signedHeaders := strings.Join(names, ";")

	canonical := strings.Join([]string{
		strings.ToUpper(req.Method),
		CanonicalPath(req.Path, req.Service != "s3"),
		CanonicalQuery(req.Query),
		ch.String(),
		signedHeaders,
		payloadHash,
	}, "\n")

	scope := strings.Join([]string{date, req.Region, req.Service, terminator}, "/")
	stringToSign := strings.Join([]string{Algorithm, amzDate, scope, HashHex([]byte(canonical))}, "\n")

	key := SigningKey(creds.SecretAccessKey, date, req.Region, req.Service)
	signature := hex.EncodeToString(hmacSHA256(key, stringToSign))

	auth := fmt.Sprintf("%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		Algorithm, creds.AccessKeyID, scope, signedHeaders, signature)
	out := Signed{
		Headers: map[string]string{
			HeaderDate:          amzDate,
			HeaderAuthorization: auth,
		},
		SignedHeaders:    signedHeaders,
		CanonicalRequest: canonical,
		StringToSign:     stringToSign,
		Signature:        signature,
	}
	if req.SignPayloadHeader {
		out.Headers[HeaderContentSHA256] = payloadHash
	}
	if creds.SessionToken != "" {
		out.Headers[HeaderSecurityToken] = creds.SessionToken
	}
	return out, nil
}

// SigningKey выводит ключ подписи из секрета: дата -> регион -> сервис.
func SigningKey(secret, date, region, service string) []byte {
	k := hmacSHA256([]byte("AWS4"+secret), date)
	k = hmacSHA256(k, region)
	k = hmacSHA256(k, service)
	return hmacSHA256(k, terminator)
}

// SignHTTP подписывает готовый *http.Request. Тело передаётся отдельно,
// потому что r.Body читается один раз.
func SignHTTP(r *http.Request, body []byte, region, service string, creds Credentials, now time.Time) error {
	headers := map[string]string{}
	if ct := r.Header.Get("Content-Type"); ct != "" {
		headers["content-type"] = ct
	}
	host := r.Host
	if host == "" {
		host = r.URL.Host
	}
	s, err := Sign(Request{
		Method:            r.Method,
		Host:              host,
		Path:              r.URL.Path,
		Query:             r.URL.Query(),
		Headers:           headers,
		Body:              body,
		Region:            region,
		Service:           service,
		Time:              now,
		SignPayloadHeader: service == "s3",
	}, creds)
	if err != nil {
		return err
	}
	Apply(r, s)
	return nil
}

// Apply выставляет подписанные заголовки.
func Apply(r *http.Request, s Signed) {
	for k, v := range s.Headers {
		r.Header.Set(k, v)
	}
}

func HashHex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// CanonicalPath экранирует путь по RFC 3986. Все сервисы, кроме S3,
// требуют двойного экранирования сегментов.
func CanonicalPath(path string, double bool) string {
	if path == "" {
		return "/"
	}
	p := escape(path, false)
	if double {
		p = escape(p, false)
	}
	return p
}

// CanonicalQuery сортирует параметры по ключу, затем по значению.
func CanonicalQuery(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return escape(keys[i], true) < escape(keys[j], true) })

	var pairs []string
	for _, k := range keys {
		ek := escape(k, true)
		vs := make([]string, 0, len(q[k]))
		for _, v := range q[k] {
			vs = append(vs, escape(v, true))
		}
		if len(vs) == 0 {
			vs = append(vs, "")
		}
		sort.Strings(vs)
		for _, v := range vs {
			pairs = append(pairs, ek+"="+v)
		}
	}
	return strings.Join(pairs, "&")
}

func escape(s string, encodeSlash bool) string {
	const hexUpper = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreserved(c) || (c == '/' && !encodeSlash) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hexUpper[c>>4])
		b.WriteByte(hexUpper[c&15])
	}
	return b.String()
}

func unreserved(c byte) bool {
	return 'A' <= c && c <= 'Z' || 'a' <= c && c <= 'z' || '0' <= c && c <= '9' ||
		c == '-' || c == '_' || c == '.' || c == '~'
}

// normalizeValue обрезает пробелы и схлопывает повторные.
func normalizeValue(v string) string {
	return strings.Join(strings.Fields(v), " ")
}

func hmacSHA256(key []byte, msg string) []byte {
	m := hmac.New(sha256.New, key)
	m.Write([]byte(msg))
	return m.Sum(nil)
}
