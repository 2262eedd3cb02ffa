package kafka

import (
	"github.com/IBM/sarama"
	"github.com/xdg-go/scram"
)

// Ensure XDGSCRAMClient implements sarama.SCRAMClient.
var _ sarama.SCRAMClient = (*XDGSCRAMClient)(nil)

// XDGSCRAMClient adapts an xdg-go/scram conversation to sarama.SCRAMClient.
type XDGSCRAMClient struct {
	*scram.Client
	*scram.ClientConversation
	scram.HashGeneratorFcn
}

// Begin prepares a new conversation for the given credentials.
func (x *XDGSCRAMClient) Begin(userName, password, authzID string) (err error) {
	x.Client, err = x.HashGeneratorFcn.NewClient(userName, password, authzID)
	if err != nil {
		return err
	}
	x.ClientConversation = x.Client.NewConversation()
	return nil
}

// Step answers one server challenge.
func (x *XDGSCRAMClient) Step(challenge string) (string, error) {
	return x.ClientConversation.Step(challenge)
}

// Done reports whether the conversation has completed.
func (x *XDGSCRAMClient) Done() bool {
	return x.ClientConversation.Done()
}

// scramMechanisms maps the configured mechanism name to sarama's mechanism
// and the matching hash generator.
var scramMechanisms = map[string]struct {
	mechanism sarama.SASLMechanism
	hash      scram.HashGeneratorFcn
}{
	"SCRAM-SHA-256": {sarama.SASLTypeSCRAMSHA256, scram.SHA256},
	"SCRAM-SHA-512": {sarama.SASLTypeSCRAMSHA512, scram.SHA512},
}
