package platform

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const (
	soapEnvelopeNS = "http://schemas.xmlsoap.org/soap/envelope/"
	partnerNS      = "urn:partner.soap.sforce.com"
)

type logoutEnvelope struct {
	XMLName   xml.Name `xml:"soapenv:Envelope"`
	SoapEnvNS string   `xml:"xmlns:soapenv,attr"`
	PartnerNS string   `xml:"xmlns:urn,attr"`
	SessionID string   `xml:"soapenv:Header>urn:SessionHeader>urn:sessionId"`
	Logout    struct{} `xml:"soapenv:Body>urn:logout"`
}

// Logout ends the platform session the access token belongs to through the
// partner SOAP API. This is the generic session logout for handed-over tokens.
func (c *Client) Logout(ctx context.Context) error {
	payload, err := xml.Marshal(logoutEnvelope{
		SoapEnvNS: soapEnvelopeNS,
		PartnerNS: partnerNS,
		SessionID: c.creds.AccessToken,
	})
	if err != nil {
		return fmt.Errorf("[platform.Logout] encode envelope: %w", err)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(soapPath+c.apiVersion),
		bytes.NewReader(append([]byte(xml.Header), payload...)))
	if err != nil {
		return fmt.Errorf("[platform.Logout] build request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=UTF-8")
	req.Header.Set("SOAPAction", `""`)

	if _, err := c.do(req); err != nil {
		return err
	}
	return nil
}

// RevokeToken invalidates the access token at the OAuth2 revocation endpoint.
// revokeURL may be empty to use the instance's own endpoint.
func (c *Client) RevokeToken(ctx context.Context, revokeURL string) error {
	if revokeURL == "" {
		revokeURL = c.url(revokePath)
	}
	form := url.Values{"token": {c.creds.AccessToken}}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("[platform.RevokeToken] build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	if _, err := c.do(req); err != nil {
		return err
	}
	return nil
}

// RevokeURL is the revocation endpoint of a login host.
func RevokeURL(loginURL string) string {
	return strings.TrimSuffix(loginURL, "/") + revokePath
}
