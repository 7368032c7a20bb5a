package sources

// daily.date is a scalar keyed by yyyy-MM-dd carrying the same fields as
// summary, summary is requested so the operation matches what the site sends.
const scheduleQuery = `query schedule($scheduleParams: ScheduleParams) {
  schedule(input: $scheduleParams) {
    bizItemSchedule {
      daily {
        date
        summary {
          dateKey
          minBookingCount
          maxBookingCount
          bookingCount
          stock
          isBusinessDay
          hasBusinessDays
          isSaleDay
          startTime
          endTime
          todayDealRate
          prices {
            groupName
            isDefault
            price
            priceId
            name
            normalPrice
            desc
            order
            saleStartDateTime
            saleEndDateTime
            __typename
          }
          __typename
        }
        __typename
      }
      __typename
    }
    __typename
  }
}`
