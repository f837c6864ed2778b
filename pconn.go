// Package pconn implements a length-prefixed, typed message transport over
// reliable stream connections (TCP). It provides a Payload codec for
// building typed frame bodies, a Session engine that frames outbound
// messages, dispatches inbound messages by message id, and maintains a
// ping/pong keepalive, and an Acceptor/Connector pair that produce started
// Sessions on the server and client side respectively.
//
// A minimal echo server:
//
//	acceptor := pconn.NewAcceptor(pconn.DefaultOptions())
//	if err := acceptor.Bind("tcp", ":9000"); err != nil {
//		log.Fatal(err)
//	}
//	go acceptor.StartAccept(func(s *pconn.Session) {
//		s.SetHandler(2, func(p *pconn.Payload, s *pconn.Session) {
//			msg, _ := p.PopString()
//			resp := pconn.NewPayload()
//			resp.PushString(msg)
//			resp.PushMessageID(3)
//			s.Send(resp)
//		}, true)
//	}, nil)
package pconn
