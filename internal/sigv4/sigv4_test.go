package sigv4

import (
	"bytes"
	"encoding/hex"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"
)

const exampleSecret = "wJalrXUtnFEMI/K7MDENG+bPxRfiCYEXAMPLEKEY"

var exampleCreds = Credentials{AccessKeyID: "AKIDEXAMPLE", SecretAccessKey: exampleSecret}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(TimeFormat, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return ts
}

// Пример IAM ListUsers из документации AWS.
func TestSignIAMListUsers(t *testing.T) {
	s, err := Sign(Request{
		Method:  "GET",
		Host:    "iam.amazonaws.com",
		Path:    "/",
		Query:   url.Values{"Action": {"ListUsers"}, "Version": {"2010-05-08"}},
		Headers: map[string]string{"Content-Type": "application/x-www-form-urlencoded; charset=utf-8"},
		Region:  "us-east-1",
		Service: "iam",
		Time:    mustTime(t, "20150830T123600Z"),
	}, exampleCreds)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	wantCanonical := "GET\n/\nAction=ListUsers&Version=2010-05-08\n" +
		"content-type:application/x-www-form-urlencoded; charset=utf-8\n" +
		"host:iam.amazonaws.com\n" +
		"x-amz-date:20150830T123600Z\n\n" +
		"content-type;host;x-amz-date\n" +
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if s.CanonicalRequest != wantCanonical {
		t.Errorf("canonical request:\n%s\nwant:\n%s", s.CanonicalRequest, wantCanonical)
	}
	if got := HashHex([]byte(s.CanonicalRequest)); got != "f536975d06c0309214f805bb90ccff089219ecd68b2577efef23edd43b7e1a59" {
		t.Errorf("canonical hash = %s", got)
	}
	wantSTS := "AWS4-HMAC-SHA256\n20150830T123600Z\n20150830/us-east-1/iam/aws4_request\n" +
		"f536975d06c0309214f805bb90ccff089219ecd68b2577efef23edd43b7e1a59"
	if s.StringToSign != wantSTS {
		t.Errorf("string to sign:\n%s", s.StringToSign)
	}
	if s.Signature != "5d672d79c15b13162d9279b0855cfba6789a8edb4c82c400e06b5924a6f2b5d7" {
		t.Errorf("signature = %s", s.Signature)
	}
	wantAuth := "AWS4-HMAC-SHA256 Credential=AKIDEXAMPLE/20150830/us-east-1/iam/aws4_request, " +
		"SignedHeaders=content-type;host;x-amz-date, " +
		"Signature=5d672d79c15b13162d9279b0855cfba6789a8edb4c82c400e06b5924a6f2b5d7"
	if got := s.Headers[HeaderAuthorization]; got != wantAuth {
		t.Errorf("authorization = %s", got)
	}
	if s.Headers[HeaderDate] != "20150830T123600Z" {
		t.Errorf("x-amz-date = %s", s.Headers[HeaderDate])
	}
}

func TestSigningKey(t *testing.T) {
	got := hex.EncodeToString(SigningKey(exampleSecret, "20150830", "us-east-1", "iam"))
	if got != "c4afb1cc5771d871763a393e44b703571b55cc28424d1a5e86da6ed3c154a4b9" {
		t.Errorf("signing key = %s", got)
	}
}

func TestSignLambdaInvokeWithSessionToken(t *testing.T) {
	creds := exampleCreds
	creds.SessionToken = "session-token"
	s, err := Sign(Request{
		Method:  "POST",
		Host:    "lambda.eu-central-1.amazonaws.com",
		Path:    "/2015-03-31/functions/remotion-render/invocations",
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    []byte(`{"type":"payload","payload":"{}"}`),
		Region:  "eu-central-1",
		Service: "lambda",
		Time:    mustTime(t, "20240102T030405Z"),
	}, creds)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if s.SignedHeaders != "content-type;host;x-amz-date;x-amz-security-token" {
		t.Errorf("signed headers = %s", s.SignedHeaders)
	}
	if s.Signature != "792d85424c82d4d1b5b293196ac0227e71c6e2aeab236dfa3b321c98267840d2" {
		t.Errorf("signature = %s", s.Signature)
	}
	if s.Headers[HeaderSecurityToken] != "session-token" {
		t.Errorf("security token header missing: %v", s.Headers)
	}
}

func TestSignS3PutSinglePathEncoding(t *testing.T) {
	s, err := Sign(Request{
		Method:            "PUT",
		Host:              "renders.s3.eu-central-1.amazonaws.com",
		Path:              "/input-props/abc def.json",
		Headers:           map[string]string{"Content-Type": "application/json"},
		Body:              []byte("hello"),
		Region:            "eu-central-1",
		Service:           "s3",
		Time:              mustTime(t, "20240102T030405Z"),
		SignPayloadHeader: true,
	}, exampleCreds)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !strings.HasPrefix(s.CanonicalRequest, "PUT\n/input-props/abc%20def.json\n") {
		t.Errorf("canonical request:\n%s", s.CanonicalRequest)
	}
	if s.Signature != "395f47dc1c45ac84ab668276baf9320f535f66e6dff8abdf58c4bfd0e018dbfe" {
		t.Errorf("signature = %s", s.Signature)
	}
	if s.Headers[HeaderContentSHA256] != HashHex([]byte("hello")) {
		t.Errorf("payload hash header = %s", s.Headers[HeaderContentSHA256])
	}
}

func TestCanonicalEncoding(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"empty path", CanonicalPath("", true), "/"},
		{"double encoded", CanonicalPath("/a b/c", true), "/a%2520b/c"},
		{"single encoded", CanonicalPath("/a b/c", false), "/a%20b/c"},
		{"unreserved kept", CanonicalPath("/A-z_0.~", true), "/A-z_0.~"},
		{"query sorted", CanonicalQuery(url.Values{"b": {"2", "1"}, "a": {"x/y"}}), "a=x%2Fy&b=1&b=2"},
		{"query key prefix", CanonicalQuery(url.Values{"a-b": {"1"}, "a": {"2"}}), "a=2&a-b=1"},
		{"empty query", CanonicalQuery(nil), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestSignRejectsIncompleteInput(t *testing.T) {
	if _, err := Sign(Request{Region: "us-east-1", Service: "s3"}, Credentials{AccessKeyID: "x"}); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("missing secret: %v", err)
	}
	if _, err := Sign(Request{Service: "s3"}, exampleCreds); !errors.Is(err, ErrMissingScope) {
		t.Errorf("missing region: %v", err)
	}
}

func TestSignHTTPMatchesSign(t *testing.T) {
	body := []byte(`{"type":"payload","payload":"{}"}`)
	r, err := http.NewRequest(http.MethodPost, "https://lambda.eu-central-1.amazonaws.com/2015-03-31/functions/remotion-render/invocations", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	r.Header.Set("Content-Type", "application/json")
	creds := exampleCreds
	creds.SessionToken = "session-token"
	if err := SignHTTP(r, body, "eu-central-1", "lambda", creds, mustTime(t, "20240102T030405Z")); err != nil {
		t.Fatalf("SignHTTP: %v", err)
	}
	auth := r.Header.Get(HeaderAuthorization)
	if !strings.HasSuffix(auth, "Signature=792d85424c82d4d1b5b293196ac0227e71c6e2aeab236dfa3b321c98267840d2") {
		t.Errorf("authorization = %s", auth)
	}
	if r.Header.Get(HeaderDate) != "20240102T030405Z" {
		t.Errorf("date header = %s", r.Header.Get(HeaderDate))
	}
}
