package netzme

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
)

const (
	HeaderSignature = "X-SIGNATURE"
	HeaderTimestamp = "X-TIMESTAMP"
)

// ParsePublicKey accepts PKIX and PKCS#1 encoded RSA public keys.
func ParsePublicKey(pemData string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, errors.New("netzme public key: no PEM block")
	}
	if pub, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		rsaPub, ok := pub.(*rsa.PublicKey)
		if !ok {
			return nil, errors.New("netzme public key: not RSA")
		}
		return rsaPub, nil
	}
	pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("netzme public key: %w", err)
	}
	return pub, nil
}

// StringToSign builds METHOD:PATH:hex(sha256(minified body)):TIMESTAMP.
func StringToSign(method, path string, body []byte, timestamp string) (string, error) {
	var compact bytes.Buffer
	if len(body) > 0 {
		if err := json.Compact(&compact, body); err != nil {
			return "", fmt.Errorf("minify body: %w", err)
		}
	}
	digest := sha256.Sum256(compact.Bytes())
	return strings.ToUpper(method) + ":" + path + ":" + hex.EncodeToString(digest[:]) + ":" + timestamp, nil
}

func verifySignature(pub *rsa.PublicKey, method, path string, body []byte, timestamp, signature string) error {
	if pub == nil {
		return errors.New("no public key configured")
	}
	if signature == "" || timestamp == "" {
		return errors.New("missing signature headers")
	}
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	payload, err := StringToSign(method, path, body, timestamp)
	if err != nil {
		return err
	}
	hashed := sha256.Sum256([]byte(payload))
	return rsa.VerifyPKCS1v15(pub, crypto.SHA256, hashed[:], sig)
}
