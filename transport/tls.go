package transport

import (
	"crypto/tls"
	"net"
)

// TLS is the TCP transport with connections wrapped into TLS. The handshake happens lazily,
// on the first read or write.
type TLS struct {
	config *tls.Config
	TCP
}

func NewTLS(config *tls.Config, scheduler Scheduler) *TLS {
	return &TLS{
		config: config,
		TCP:    newTCP(nil, scheduler),
	}
}

func (t *TLS) Bind(addr string) error {
	tcp, err := bindTCP(addr)
	if err != nil {
		return err
	}

	t.TCP.l = tlsAdapter{tcp, tls.NewListener(tcp, t.config)}

	return nil
}

type tlsAdapter struct {
	*net.TCPListener
	tls net.Listener
}

func (t tlsAdapter) Accept() (net.Conn, error) {
	return t.tls.Accept()
}
