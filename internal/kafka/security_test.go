package kafka

import (
	"testing"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jittakal/kaflogcache/internal/config/dto"
)

func TestConfigureSecurity(t *testing.T) {
	tests := []struct {
		name          string
		sec           SecurityConfig
		wantErr       bool
		wantTLS       bool
		wantSASL      bool
		wantMechanism sarama.SASLMechanism
	}{
		{name: "plaintext", sec: SecurityConfig{Protocol: "PLAINTEXT"}},
		{name: "empty defaults to plaintext", sec: SecurityConfig{}},
		{name: "ssl", sec: SecurityConfig{Protocol: "SSL"}, wantTLS: true},
		{
			name:          "sasl plain",
			sec:           SecurityConfig{Protocol: "SASL_PLAINTEXT", SASLMechanism: "PLAIN", SASLUsername: "u", SASLPassword: "p"},
			wantSASL:      true,
			wantMechanism: sarama.SASLTypePlaintext,
		},
		{
			name:          "scram 256 over tls",
			sec:           SecurityConfig{Protocol: "SASL_SSL", SASLMechanism: "SCRAM-SHA-256", SASLUsername: "u", SASLPassword: "p"},
			wantTLS:       true,
			wantSASL:      true,
			wantMechanism: sarama.SASLTypeSCRAMSHA256,
		},
		{
			name:          "scram 512",
			sec:           SecurityConfig{Protocol: "SASL_PLAINTEXT", SASLMechanism: "SCRAM-SHA-512", SASLUsername: "u", SASLPassword: "p"},
			wantSASL:      true,
			wantMechanism: sarama.SASLTypeSCRAMSHA512,
		},
		{
			name:          "msk iam",
			sec:           SecurityConfig{Protocol: "SASL_SSL", SASLMechanism: "AWS_MSK_IAM", AWSRegion: "eu-west-1"},
			wantTLS:       true,
			wantSASL:      true,
			wantMechanism: sarama.SASLTypeOAuth,
		},
		{name: "msk iam without region", sec: SecurityConfig{Protocol: "SASL_SSL", SASLMechanism: "AWS_MSK_IAM"}, wantErr: true},
		{name: "unknown mechanism", sec: SecurityConfig{Protocol: "SASL_SSL", SASLMechanism: "GSSAPI"}, wantErr: true},
		{name: "unknown protocol", sec: SecurityConfig{Protocol: "KERBEROS"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := sarama.NewConfig()
			err := configureSecurity(cfg, tt.sec)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			assert.Equal(t, tt.wantTLS, cfg.Net.TLS.Enable)
			assert.Equal(t, tt.wantSASL, cfg.Net.SASL.Enable)
			if tt.wantSASL {
				assert.Equal(t, tt.wantMechanism, cfg.Net.SASL.Mechanism)
			}
			if tt.wantMechanism == sarama.SASLTypeOAuth {
				provider, ok := cfg.Net.SASL.TokenProvider.(*MSKAccessTokenProvider)
				require.True(t, ok)
				assert.Equal(t, "eu-west-1", provider.region)
			}
			if tt.wantMechanism == sarama.SASLTypeSCRAMSHA256 {
				require.NotNil(t, cfg.Net.SASL.SCRAMClientGeneratorFunc)
				assert.IsType(t, &XDGSCRAMClient{}, cfg.Net.SASL.SCRAMClientGeneratorFunc())
			}
		})
	}
}

func TestSecurityFromConfig(t *testing.T) {
	sec := SecurityFromConfig(dto.KafkaConfig{
		SecurityProtocol: "SASL_SSL",
		SASLMechanism:    "PLAIN",
		SASLUsername:     "u",
		SASLPassword:     "p",
		AWSRegion:        "us-east-2",
	})

	assert.Equal(t, SecurityConfig{
		Protocol:      "SASL_SSL",
		SASLMechanism: "PLAIN",
		SASLUsername:  "u",
		SASLPassword:  "p",
		AWSRegion:     "us-east-2",
	}, sec)
}

func TestSaramaMappings(t *testing.T) {
	assert.Equal(t, sarama.OffsetOldest, offsetInitial("earliest"))
	assert.Equal(t, sarama.OffsetNewest, offsetInitial("latest"))
	assert.Equal(t, sarama.OffsetNewest, offsetInitial(""))

	assert.Equal(t, sarama.CompressionSnappy, compressionCodec("snappy"))
	assert.Equal(t, sarama.CompressionZSTD, compressionCodec("zstd"))
	assert.Equal(t, sarama.CompressionNone, compressionCodec("brotli"))

	assert.Equal(t, sarama.WaitForAll, requiredAcks("all"))
	assert.Equal(t, sarama.WaitForLocal, requiredAcks("1"))
	assert.Equal(t, sarama.NoResponse, requiredAcks("0"))
}
