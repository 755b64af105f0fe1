package notifications

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/planealo/planforms/internal/planforms/config"
)

func TestEmailServiceDisabledWithoutHost(t *testing.T) {
	es := NewEmailService(&config.Config{EmailWorkers: 2})
	assert.Error(t, es.Send(mail{To: "ops@planealo.mx"}))
	assert.Zero(t, es.SubmissionReceived([]string{"ops@planealo.mx"}, nil, nil, nil))

	// Stop on a disabled service is a no-op.
	es.Stop()
}

func TestEmailServiceStopThenSend(t *testing.T) {
	es := NewEmailService(&config.Config{EmailHost: "127.0.0.1", EmailPort: 1, EmailWorkers: 2})

	es.Stop()
	assert.Error(t, es.Send(mail{To: "ops@planealo.mx"}))

	// Second Stop must not close the channel again.
	es.Stop()
}

func TestEmailServiceSendDuringStop(t *testing.T) {
	es := NewEmailService(&config.Config{EmailHost: "127.0.0.1", EmailPort: 1, EmailWorkers: 1})

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Must never panic on a closed channel, an error is fine.
			es.Send(mail{To: "ops@planealo.mx"})
		}()
	}
	es.Stop()
	wg.Wait()
}
