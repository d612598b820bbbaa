package moqt

import "testing"

func TestListenRequiresTLSConfig(t *testing.T) {
	t.Parallel()
	_, err := Listen(ServerConfig{Addr: "127.0.0.1:0"})
	if err == nil {
		t.Fatal("expected Listen to reject a ServerConfig with no TLSConfig")
	}
}
