package config

import "path"

// DefaultStrategy returns the standard three-tier routine set: monthly
// snapshots kept for a year, weekly for a month, and two-hourly snapshots
// covering the previous day. Prefixes are nested under basePrefix so the
// tiers never share a snapshot namespace.
func DefaultStrategy(sourcePath, basePrefix string) []Routine {
	return []Routine{
		{
			Name:           "Monthly",
			SourcePath:     sourcePath,
			S3Prefix:       path.Join(basePrefix, "monthly"),
			Frequency:      "monthly",
			RetentionCount: 12,
			Note:           "Keep last 12 months",
		},
		{
			Name:           "Weekly",
			SourcePath:     sourcePath,
			S3Prefix:       path.Join(basePrefix, "weekly"),
			Frequency:      "weekly",
			RetentionCount: 4,
			Note:           "Keep last 4 weeks",
		},
		{
			Name:           "Daily_2h",
			SourcePath:     sourcePath,
			S3Prefix:       path.Join(basePrefix, "daily-2h"),
			Frequency:      "every 2 hours",
			RetentionCount: 12,
			Note:           "Keep previous day with 2-hour snapshots",
		},
	}
}
