package smssvc

import (
	"log"
	"sync"

	"github.com/trezcool/kinderhub/core"
)

type consoleService struct {
	std  *log.Logger
	from string
}

var _ core.SMSService = (*consoleService)(nil)

// NewConsoleService returns an SMSService printing the messages to std.
func NewConsoleService(std *log.Logger, conf *core.Config) *consoleService {
	return &consoleService{std: std, from: conf.Twilio.FromNumber}
}

func (svc *consoleService) SendMessages(messages ...*core.SMSMessage) {
	for _, msg := range messages {
		if msg.HasRecipient() {
			svc.std.Printf("SMS From: %s To: %s\r\n%s\r\n", svc.from, msg.To, msg.Body)
		}
	}
}

// ServiceMock records the messages synchronously.
type ServiceMock struct {
	mu       sync.Mutex
	messages []core.SMSMessage
}

var _ core.SMSService = (*ServiceMock)(nil)

func NewServiceMock() *ServiceMock {
	return &ServiceMock{}
}

func (svc *ServiceMock) SendMessages(messages ...*core.SMSMessage) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	for _, msg := range messages {
		if msg.HasRecipient() {
			svc.messages = append(svc.messages, *msg)
		}
	}
}

// Messages returns the messages sent so far.
func (svc *ServiceMock) Messages() []core.SMSMessage {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	msgs := make([]core.SMSMessage, len(svc.messages))
	copy(msgs, svc.messages)
	return msgs
}

// Reset forgets the messages sent so far.
func (svc *ServiceMock) Reset() {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.messages = nil
}
