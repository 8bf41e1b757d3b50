package fastview

import (
	"time"

	channerics "github.com/niceyeti/channerics/channels"
)

// FanIn aggregates the views' ele-update channels into a single channel, batched per rate.
func FanIn(
	done <-chan struct{},
	views []ViewComponent,
	rate time.Duration,
) <-chan []EleUpdate {
	inputs := make([]<-chan []EleUpdate, len(views))
	for i, view := range views {
		inputs[i] = view.Updates()
	}
	return Batch(
		done,
		channerics.Merge(done, inputs...),
		rate)
}

// Batch collects updates within the passed time frame before sending, over-writing previously
// received values for the same ele-id, so that only the latest value per element is sent.
// Anything pending when the source closes is flushed.
func Batch(
	done <-chan struct{},
	source <-chan []EleUpdate,
	rate time.Duration,
) <-chan []EleUpdate {
	output := make(chan []EleUpdate)

	go func() {
		defer close(output)

		data := map[string]EleUpdate{}
		order := []string{}
		flush := func() bool {
			batch := make([]EleUpdate, 0, len(order))
			for _, id := range order {
				batch = append(batch, data[id])
			}
			select {
			case output <- batch:
				data = map[string]EleUpdate{}
				order = order[:0]
				return true
			case <-done:
				return false
			}
		}

		last := time.Now()
		for updates := range channerics.OrDone(done, source) {
			for _, update := range updates {
				if _, seen := data[update.EleId]; !seen {
					order = append(order, update.EleId)
				}
				data[update.EleId] = update
			}

			if time.Since(last) >= rate && len(order) > 0 {
				if !flush() {
					return
				}
				last = time.Now()
			}
		}

		if len(order) > 0 {
			flush()
		}
	}()

	return output
}
