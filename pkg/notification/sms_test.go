package notification

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecipients(t *testing.T) {
	got := Recipients([]string{" +234 801 234 5678", "", "+2348012345678", "08030000000", "07011111111", "09022222222"}, 3)
	assert.Equal(t, []string{"+2348012345678", "08030000000", "07011111111"}, got)
}

func TestSMSLink(t *testing.T) {
	assert.Equal(t, "sms:+2348012345678,08030000000?body=Help%20me%20%2F%20now",
		SMSLink([]string{"+2348012345678", "08030000000"}, "Help me / now", "android"))
	assert.Equal(t, "sms:0803&body=x", SMSLink([]string{"0803"}, "x", "iOS"))
	assert.Equal(t, "sms:0803", SMSLink([]string{"0803"}, "", ""))
}

func TestEmergencySMSNotify(t *testing.T) {
	var launched []string
	sms := NewEmergencySMS(SMSConfig{}, LauncherFunc(func(ctx context.Context, link string) error {
		launched = append(launched, link)
		return nil
	}))

	link, err := sms.Notify(context.Background(), []string{"1", "2", "3", "4"}, "SOS")
	require.NoError(t, err)
	assert.Equal(t, "sms:1,2,3?body=SOS", link)
	assert.Equal(t, []string{link}, launched)

	_, err = sms.Notify(context.Background(), nil, "SOS")
	assert.Error(t, err)

	_, err = NewEmergencySMS(SMSConfig{}, nil).Notify(context.Background(), []string{"1"}, "SOS")
	assert.Error(t, err)
}
