package kafka

import (
	"context"
	"crypto/tls"
	"strconv"

	"github.com/IBM/sarama"
	"github.com/aws/aws-msk-iam-sasl-signer-go/signer"
	"github.com/hyp3rd/ewrap"

	"github.com/jittakal/kaflogcache/internal/config/dto"
)

// SecurityConfig holds the connection security settings shared by the
// consumer group and both producers.
type SecurityConfig struct {
	Protocol      string
	SASLMechanism string
	SASLUsername  string
	SASLPassword  string
	AWSRegion     string
}

// SecurityFromConfig extracts the security settings from the Kafka section.
func SecurityFromConfig(cfg dto.KafkaConfig) SecurityConfig {
	return SecurityConfig{
		Protocol:      cfg.SecurityProtocol,
		SASLMechanism: cfg.SASLMechanism,
		SASLUsername:  cfg.SASLUsername,
		SASLPassword:  cfg.SASLPassword,
		AWSRegion:     cfg.AWSRegion,
	}
}

// MSKAccessTokenProvider implements sarama.AccessTokenProvider for AWS MSK IAM authentication.
type MSKAccessTokenProvider struct {
	region string
}

// Token generates an AWS MSK IAM authentication token from the default credential chain.
func (m *MSKAccessTokenProvider) Token() (*sarama.AccessToken, error) {
	token, expiryMs, err := signer.GenerateAuthToken(context.Background(), m.region)
	if err != nil {
		return nil, ewrap.Wrap(err, "failed to generate MSK IAM token").
			WithMetadata("region", m.region)
	}

	return &sarama.AccessToken{
		Token:      token,
		Extensions: map[string]string{"expiry": strconv.FormatInt(expiryMs, 10)},
	}, nil
}

func configureSecurity(config *sarama.Config, sec SecurityConfig) error {
	switch sec.Protocol {
	case "", "PLAINTEXT":
		return nil

	case "SSL":
		config.Net.TLS.Enable = true
		config.Net.TLS.Config = &tls.Config{MinVersion: tls.VersionTLS12}
		return nil

	case "SASL_PLAINTEXT", "SASL_SSL":
		config.Net.SASL.Enable = true
		if err := configureSASL(config, sec); err != nil {
			return err
		}
		if sec.Protocol == "SASL_SSL" {
			config.Net.TLS.Enable = true
			config.Net.TLS.Config = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		return nil

	default:
		return ewrap.New("unsupported security protocol").
			WithMetadata("security_protocol", sec.Protocol)
	}
}

func configureSASL(config *sarama.Config, sec SecurityConfig) error {
	switch sec.SASLMechanism {
	case "PLAIN":
		config.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		config.Net.SASL.User = sec.SASLUsername
		config.Net.SASL.Password = sec.SASLPassword

	case "SCRAM-SHA-256", "SCRAM-SHA-512":
		m := scramMechanisms[sec.SASLMechanism]
		config.Net.SASL.Mechanism = m.mechanism
		config.Net.SASL.User = sec.SASLUsername
		config.Net.SASL.Password = sec.SASLPassword
		config.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
			return &XDGSCRAMClient{HashGeneratorFcn: m.hash}
		}

	case "AWS_MSK_IAM":
		if sec.AWSRegion == "" {
			return ewrap.New("AWS_MSK_IAM requires kafka.aws_region")
		}
		config.Net.SASL.Mechanism = sarama.SASLTypeOAuth
		config.Net.SASL.TokenProvider = &MSKAccessTokenProvider{region: sec.AWSRegion}

	default:
		return ewrap.New("unsupported SASL mechanism").
			WithMetadata("sasl_mechanism", sec.SASLMechanism)
	}

	return nil
}

// offsetInitial converts the AutoOffsetReset config to Sarama's offset constant.
func offsetInitial(autoOffsetReset string) int64 {
	if autoOffsetReset == "earliest" {
		return sarama.OffsetOldest
	}
	return sarama.OffsetNewest
}

// compressionCodec maps a configured compression name to Sarama's codec.
func compressionCodec(name string) sarama.CompressionCodec {
	switch name {
	case "gzip":
		return sarama.CompressionGZIP
	case "snappy":
		return sarama.CompressionSnappy
	case "lz4":
		return sarama.CompressionLZ4
	case "zstd":
		return sarama.CompressionZSTD
	default:
		return sarama.CompressionNone
	}
}

// requiredAcks maps "all", "1" or "0" to Sarama's acknowledgement level.
func requiredAcks(name string) sarama.RequiredAcks {
	switch name {
	case "0", "none":
		return sarama.NoResponse
	case "1", "leader":
		return sarama.WaitForLocal
	default:
		return sarama.WaitForAll
	}
}
