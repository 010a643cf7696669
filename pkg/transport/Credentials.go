package transport

import "crypto/tls"
import "crypto/x509"
import "errors"
import "fmt"
import "os"

import "google.golang.org/grpc/credentials"
import "google.golang.org/grpc/credentials/insecure"


var ErrNoCertificates = errors.New("no certificates found in ca file")


/*
	Load Credentials:
		1.) with no key and cert, both sides run insecure
		2.) load the node key pair, it is presented both as server and as client certificate
		3.) with a ca file, servers demand a client certificate chained to it and clients verify the server chain
			peers are addressed by host and port, so the chain is verified without a hostname check
		4.) without a ca file the channel is encrypted but the remote certificate is not verified
*/

func LoadCredentials(keyFile string, certFile string, caFile string) (credentials.TransportCredentials, credentials.TransportCredentials, error) {
	if keyFile == "" && certFile == "" { return insecure.NewCredentials(), insecure.NewCredentials(), nil }

	keyPair, loadErr := tls.LoadX509KeyPair(certFile, keyFile)
	if loadErr != nil { return nil, nil, loadErr }

	serverConfig := &tls.Config{ Certificates: []tls.Certificate{ keyPair }, MinVersion: tls.VersionTLS12 }
	clientConfig := &tls.Config{ Certificates: []tls.Certificate{ keyPair }, MinVersion: tls.VersionTLS12, InsecureSkipVerify: true }

	if caFile != "" {
		pool, poolErr := loadCertPool(caFile)
		if poolErr != nil { return nil, nil, poolErr }

		serverConfig.ClientCAs = pool
		serverConfig.ClientAuth = tls.RequireAndVerifyClientCert
		clientConfig.VerifyPeerCertificate = verifyChain(pool)
	}

	return credentials.NewTLS(serverConfig), credentials.NewTLS(clientConfig), nil
}

func loadCertPool(caFile string) (*x509.CertPool, error) {
	pem, readErr := os.ReadFile(caFile)
	if readErr != nil { return nil, readErr }

	pool := x509.NewCertPool()
	if ! pool.AppendCertsFromPEM(pem) { return nil, fmt.Errorf("%w: %s", ErrNoCertificates, caFile) }

	return pool, nil
}

func verifyChain(pool *x509.CertPool) func([][]byte, [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 { return errors.New("peer presented no certificate") }

		certs := make([]*x509.Certificate, 0, len(rawCerts))
		for _, raw := range rawCerts {
			cert, parseErr := x509.ParseCertificate(raw)
			if parseErr != nil { return parseErr }

			certs = append(certs, cert)
		}

		intermediates := x509.NewCertPool()
		for _, cert := range certs[1:] {
			intermediates.AddCert(cert)
		}

		_, verifyErr := certs[0].Verify(x509.VerifyOptions{
			Roots: pool,
			Intermediates: intermediates,
			KeyUsages: []x509.ExtKeyUsage{ x509.ExtKeyUsageAny },
		})

		return verifyErr
	}
}
