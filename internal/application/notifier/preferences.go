package notifier

import (
	"strconv"
	"time"

	"github.com/rezkam/growmaster/internal/domain"
)

// Setting keys under the notification_ prefix in user_settings. Values are
// string-serialised scalars.
const (
	settingEnabled          = "notification_enabled"
	settingTaskReminders    = "notification_task_reminders"
	settingOverdueAlerts    = "notification_overdue_alerts"
	settingSystemAlerts     = "notification_system_alerts"
	settingGrowthMilestones = "notification_growth_milestones"
	settingResourceAlerts   = "notification_resource_alerts"
	settingSoundEnabled     = "notification_sound_enabled"
	settingReminderLeadMin  = "notification_reminder_lead_minutes"
	settingQuietHoursStart  = "notification_quiet_hours_start"
	settingQuietHoursEnd    = "notification_quiet_hours_end"
)

// preferencesFrom builds notification preferences from raw settings.
// Missing or malformed values fall back to the defaults so a corrupted
// settings row can never disable the whole notifier by accident.
func preferencesFrom(settings map[string]string) domain.NotificationPreferences {
	prefs := domain.DefaultNotificationPreferences()

	boolSetting(settings, settingEnabled, &prefs.Enabled)
	boolSetting(settings, settingTaskReminders, &prefs.TaskReminders)
	boolSetting(settings, settingOverdueAlerts, &prefs.OverdueAlerts)
	boolSetting(settings, settingSystemAlerts, &prefs.SystemAlerts)
	boolSetting(settings, settingGrowthMilestones, &prefs.GrowthMilestones)
	boolSetting(settings, settingResourceAlerts, &prefs.ResourceAlerts)
	boolSetting(settings, settingSoundEnabled, &prefs.SoundEnabled)

	if raw, ok := settings[settingReminderLeadMin]; ok {
		if minutes, err := strconv.Atoi(raw); err == nil && minutes > 0 {
			prefs.ReminderLead = time.Duration(minutes) * time.Minute
		}
	}
	hourSetting(settings, settingQuietHoursStart, &prefs.QuietHoursStart)
	hourSetting(settings, settingQuietHoursEnd, &prefs.QuietHoursEnd)

	return prefs
}

func boolSetting(settings map[string]string, key string, dst *bool) {
	if raw, ok := settings[key]; ok {
		if v, err := strconv.ParseBool(raw); err == nil {
			*dst = v
		}
	}
}

func hourSetting(settings map[string]string, key string, dst *int) {
	if raw, ok := settings[key]; ok {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 && v <= 23 {
			*dst = v
		}
	}
}
